package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundMoneyHalfUp(t *testing.T) {
	cases := map[string]string{
		"25.2":     "25.2",
		"165.205":  "165.21",
		"0.005":    "0.01",
		"12.3349":  "12.33",
		"-12.345":  "-12.35",
		"100.0000": "100",
	}
	for in, want := range cases {
		got := RoundMoney(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("RoundMoney(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestRoundCost(t *testing.T) {
	got := RoundCost(decimal.NewFromInt(2).Div(decimal.NewFromInt(3)))
	if !got.Equal(decimal.RequireFromString("0.6667")) {
		t.Fatalf("RoundCost(2/3) = %s", got)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("UniqueSlice = %v", got)
	}
}

func TestDereferencePtr(t *testing.T) {
	if got := DereferencePtr[int](nil, 7); got != 7 {
		t.Fatalf("default = %d", got)
	}
	v := 3
	if got := DereferencePtr(&v, 7); got != 3 {
		t.Fatalf("value = %d", got)
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("+1 650-253-0000", "US"); err != nil {
		t.Fatalf("valid number rejected: %v", err)
	}
	if err := ValidatePhoneNumber("12", "US"); err == nil {
		t.Fatalf("short number accepted")
	}
}

func TestValidatorUsesBindingTag(t *testing.T) {
	type input struct {
		Name string `binding:"required"`
	}
	if err := Validate.Struct(input{}); err == nil {
		t.Fatalf("required binding tag was not enforced")
	}
	errs := ProcessValidationErrors(Validate.Struct(input{}))
	if errs["Name"] != "required" {
		t.Fatalf("ProcessValidationErrors = %v", errs)
	}
}
