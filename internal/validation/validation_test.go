package validation

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+380671234567", true},
		{"+38067123456789", false},
		{"+38067123456", false},
		{"380671234567", false},
		{"+381671234567", false},
		{"+380 67 123 45 67", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidPhone(tt.phone); got != tt.want {
			t.Errorf("ValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}

type signUp struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email"`
	Telephone string `form:"telephone" validate:"omitempty,phone_ua"`
}

func TestStruct_FieldNamesFromFormTags(t *testing.T) {
	errs := Struct(signUp{Username: "bad name!", Email: "not-an-email", Telephone: "+38067123456789"})

	for _, field := range []string{"username", "email", "telephone"} {
		if !errs.Has(field) {
			t.Errorf("expected an error for %s, got %v", field, errs)
		}
	}
	if errs.First("telephone") != "Phone number must be entered in the format: +380xxxxxxxxx." {
		t.Errorf("telephone message = %q", errs.First("telephone"))
	}
}

func TestStruct_Valid(t *testing.T) {
	errs := Struct(signUp{Username: "alice", Email: "alice@example.com"})
	if errs.Err() != nil {
		t.Fatalf("Struct() = %v, want no errors", errs)
	}
}

func TestErrors_As(t *testing.T) {
	err := fmt.Errorf("register: %w", Field("username", "taken"))

	errs, ok := As(err)
	if !ok {
		t.Fatal("As() should find wrapped Errors")
	}
	if errs.First("username") != "taken" {
		t.Errorf("First(username) = %q, want 'taken'", errs.First("username"))
	}

	if _, ok := As(errors.New("plain")); ok {
		t.Error("As() should not match a plain error")
	}
}

func TestErrors_ErrorIsSorted(t *testing.T) {
	errs := Errors{}
	errs.Add("title", "too long")
	errs.Add("category", "missing")

	if got, want := errs.Error(), "category: missing; title: too long"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNormalizeUsername(t *testing.T) {
	// fullwidth latin letters fold to ascii under NFKC
	if got := NormalizeUsername("  ａｌｉｃｅ "); got != "alice" {
		t.Errorf("NormalizeUsername() = %q, want 'alice'", got)
	}
}
