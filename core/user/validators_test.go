package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

func newTestValidate() *validator.Validate {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	RegisterStructValidations(validate)
	return validate
}

func firstTag(t *testing.T, err error) string {
	t.Helper()
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrs) == 0 {
		t.Fatalf("expected validator.ValidationErrors, got %v", err)
	}
	return vErrs[0].Tag()
}

func TestPasswordValidation(t *testing.T) {
	validate := newTestValidate()

	newUser := func(pwd string) NewUser {
		return NewUser{
			Name:            "Jane Doe",
			Email:           "jane@test.cd",
			Password:        pwd,
			PasswordConfirm: pwd,
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "pass1", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "pass word1", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "13795337553", wantTag: pwdNotAllNumTag},
		{name: "similar to email", pwd: "jane@test.cd", wantTag: pwdAttrSimTag},
		{name: "similar to name", pwd: "JaneDoe99", wantTag: pwdAttrSimTag},
		{name: "valid", pwd: "LeagueOfLegends#99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(newUser(tt.pwd))
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Struct() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Struct() expected an error, got nil")
			}
			if tag := firstTag(t, err); tag != tt.wantTag {
				t.Errorf("Struct() tag = %v, wantTag %v", tag, tt.wantTag)
			}
		})
	}
}

func TestPasswordValidation_updateSkipsEmptyPassword(t *testing.T) {
	validate := newTestValidate()

	// an update without a password change must not trip the policy
	uu := UpdateUser{Name: "Jane Doe"}
	if err := validate.Struct(uu); err != nil {
		t.Errorf("Struct() unexpected error: %v", err)
	}

	uu = UpdateUser{Name: "Jane Doe", Password: "short", PasswordConfirm: "short"}
	err := validate.Struct(uu)
	if err == nil {
		t.Fatal("Struct() expected an error, got nil")
	}
	if tag := firstTag(t, err); tag != pwdMinLenTag {
		t.Errorf("Struct() tag = %v, wantTag %v", tag, pwdMinLenTag)
	}
}

func TestAllRolesValidation(t *testing.T) {
	validate := newTestValidate()

	nu := NewUser{
		Name:            "Jane Doe",
		Email:           "jane@test.cd",
		Password:        "LeagueOfLegends#99",
		PasswordConfirm: "LeagueOfLegends#99",
		Roles:           []string{"superuser:"},
	}
	err := validate.Struct(nu)
	if err == nil {
		t.Fatal("Struct() expected an error, got nil")
	}
	if tag := firstTag(t, err); tag != allRolesTag {
		t.Errorf("Struct() tag = %v, wantTag %v", tag, allRolesTag)
	}

	nu.Roles = []string{RoleStudent}
	if err = validate.Struct(nu); err != nil {
		t.Errorf("Struct() unexpected error: %v", err)
	}
}
