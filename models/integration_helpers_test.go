package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

// setupIntegration starts MySQL and Redis, migrates, and returns a context for a fresh organization.
func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "retail_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetOrganizationIdInContext(ctx, "org-"+uuid.NewString()[:8])
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "cashier@test.local")
	return ctx
}

type testCatalog struct {
	piece *models.MeasuringUnit
	box   *models.MeasuringUnit
}

// newTestCatalog creates a count family with pcs (base) and a box of 12.
func newTestCatalog(t *testing.T, ctx context.Context) testCatalog {
	t.Helper()
	family, err := models.CreateUnitFamily(ctx, &models.NewUnitFamily{Name: "Count"})
	if err != nil {
		t.Fatalf("CreateUnitFamily: %v", err)
	}
	piece, err := models.CreateMeasuringUnit(ctx, &models.NewMeasuringUnit{FamilyId: family.ID, Name: "Piece", Abbreviation: "pcs", IsBase: true})
	if err != nil {
		t.Fatalf("CreateMeasuringUnit pcs: %v", err)
	}
	box, err := models.CreateMeasuringUnit(ctx, &models.NewMeasuringUnit{FamilyId: family.ID, Name: "Box", Abbreviation: "box", MultiplierToBase: decimal.NewFromInt(12)})
	if err != nil {
		t.Fatalf("CreateMeasuringUnit box: %v", err)
	}
	return testCatalog{piece: piece, box: box}
}

func (c testCatalog) newProduct(t *testing.T, ctx context.Context, name string, batches, serials bool) *models.Product {
	t.Helper()
	p, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           name,
		BaseUnitId:     c.piece.ID,
		SaleUnitId:     c.piece.ID,
		PurchaseUnitId: c.piece.ID,
		TracksBatches:  batches,
		TracksSerials:  serials,
		SellPrice:      decimal.NewFromInt(50),
		TaxRate:        decimal.NewFromInt(18),
		HasExpiryDate:  batches,
	})
	if err != nil {
		t.Fatalf("CreateProduct %s: %v", name, err)
	}
	return p
}

func mustReceive(t *testing.T, ctx context.Context, input *models.NewStockReceipt) *models.StockReceiptResult {
	t.Helper()
	result, err := models.ReceiveStock(ctx, input)
	if err != nil {
		t.Fatalf("ReceiveStock product %d: %v", input.ProductId, err)
	}
	return result
}

func assertLedgerConsistent(t *testing.T, ctx context.Context, productId int) {
	t.Helper()
	rec, err := models.ReconcileProductLedger(ctx, productId)
	if err != nil {
		t.Fatalf("ReconcileProductLedger: %v", err)
	}
	if !rec.Consistent {
		t.Fatalf("ledger out of sync for product %d: ledger=%s total=%s store=%s",
			productId, rec.LedgerQuantity, rec.TotalQuantity, rec.StoreQuantity)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=retail_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
