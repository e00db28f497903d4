package handler

import (
	"fmt"
	"sync"

	"github.com/carbonlog/internal/carbon"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的 validator 注册业务校验标签：
// carbon_category 校验类别名称，barcode 校验 8-14 位数字条码。
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err = engine.RegisterValidation("carbon_category", validateCategory); err != nil {
			return
		}
		err = engine.RegisterValidation("barcode", validateBarcode)
	})
	return err
}

func validateCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := carbon.ParseCategory(value)
	return err == nil
}

func validateBarcode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) < 8 || len(value) > 14 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
