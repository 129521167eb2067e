package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var storageDrivers = []string{
	StorageDriverMemory,
	StorageDriverFile,
	StorageDriverSQLite,
	StorageDriverMySQL,
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	// Report fields by their config keys so messages match the YAML file.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("storage_driver", isStorageDriver); err != nil {
		return nil, nil, fmt.Errorf("failed to register storage_driver validation: %w", err)
	}
	if err := validate.RegisterTranslation("storage_driver", trans, func(ut ut.Translator) error {
		return ut.Add("storage_driver", "{0} must be one of {1}", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("storage_driver", strings.TrimPrefix(fe.Namespace(), "Config."), strings.Join(storageDrivers, ", "))
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register storage_driver translation: %w", err)
	}

	return validate, trans, nil
}

func isStorageDriver(fl validator.FieldLevel) bool {
	return slices.Contains(storageDrivers, fl.Field().String())
}
