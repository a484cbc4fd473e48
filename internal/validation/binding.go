package validation

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
)

var registerOnce sync.Once

// RegisterBindings добавляет пользовательские теги в валидатор gin:
//   - proposal_status: значение из набора статусов предложения;
//   - signup_role: роль, доступная при самостоятельной регистрации.
func RegisterBindings() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err = v.RegisterValidation("proposal_status", validateProposalStatus); err != nil {
			return
		}
		err = v.RegisterValidation("signup_role", validateSignupRole)
	})
	return err
}

func validateProposalStatus(fl validator.FieldLevel) bool {
	return valueobject.ProposalStatus(fl.Field().String()).IsValid()
}

func validateSignupRole(fl validator.FieldLevel) bool {
	role := valueobject.UserRole(fl.Field().String())
	return role == valueobject.UserRoleClient || role == valueobject.UserRoleServiceProvider
}
