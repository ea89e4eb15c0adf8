package rule_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/JSB847123/simple-business-database/pkg/rule"
)

// listQuery 用于测试 ValidateStruct，形状仿照控制台的列表查询.
type listQuery struct {
	Address string `rule:"required"`
	Limit   int    `rule:"gte=0,lte=1000"`
}

// TestEngine 测试 Engine 函数返回非 nil 实例.
func TestEngine(t *testing.T) {
	engine := rule.Engine()
	if engine == nil {
		t.Error("Engine() returned nil")
	}
}

// TestValidateStruct 测试 ValidateStruct 对有效和无效结构体的验证.
func TestValidateStruct(t *testing.T) {
	// 有效结构体
	valid := listQuery{Address: "济州市", Limit: 50}

	err := rule.ValidateStruct(valid)
	if err != nil {
		t.Errorf("Expected no error for valid struct, got %v", err)
	}

	// 无效结构体：缺少 Address
	invalid1 := listQuery{Address: "", Limit: 50}

	err = rule.ValidateStruct(invalid1)
	if err == nil {
		t.Error("Expected error for invalid struct (missing address), got nil")
	}

	// 无效结构体：Limit 超过上限
	invalid2 := listQuery{Address: "济州市", Limit: 2000}

	err = rule.ValidateStruct(invalid2)
	if err == nil {
		t.Error("Expected error for invalid struct (limit > 1000), got nil")
	}
}

// TestValidateVar 测试 ValidateVar 对变量的验证.
func TestValidateVar(t *testing.T) {
	// 有效 url
	err := rule.ValidateVar("http://localhost:3000/api", "required,url")
	if err != nil {
		t.Errorf("Expected no error for valid url, got %v", err)
	}

	// 无效 url
	err = rule.ValidateVar("not a url", "required,url")
	if err == nil {
		t.Error("Expected error for invalid url, got nil")
	}

	// 有效数字
	err = rule.ValidateVar(25, "gte=18")
	if err != nil {
		t.Errorf("Expected no error for valid number, got %v", err)
	}

	// 无效数字
	err = rule.ValidateVar(15, "gte=18")
	if err == nil {
		t.Error("Expected error for invalid number, got nil")
	}
}

// TestRegisterValidation 测试注册自定义验证.
func TestRegisterValidation(t *testing.T) {
	// 注册自定义验证：检查字符串长度是否为偶数
	err := rule.RegisterValidation("even_length", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}

		return len(str)%2 == 0
	})
	if err != nil {
		t.Fatalf("Failed to register validation: %v", err)
	}

	// 测试有效字符串
	err = rule.ValidateVar("test", "even_length")
	if err != nil {
		t.Errorf("Expected no error for even length string, got %v", err)
	}

	// 测试无效字符串
	err = rule.ValidateVar("test1", "even_length")
	if err == nil {
		t.Error("Expected error for odd length string, got nil")
	}
}

// TestErrors 测试验证错误到字段字典的转换.
func TestErrors(t *testing.T) {
	err := rule.ValidateStruct(listQuery{Address: "", Limit: -1})
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}

	fields := rule.Errors(err)
	if len(fields) != 2 {
		t.Fatalf("Expected 2 field errors, got %d: %v", len(fields), fields)
	}

	if fields["Address"] != "required" {
		t.Errorf("Expected Address violation 'required', got %q", fields["Address"])
	}

	if fields["Limit"] != "gte" {
		t.Errorf("Expected Limit violation 'gte', got %q", fields["Limit"])
	}

	// 普通错误不是验证错误，返回 nil
	if got := rule.Errors(errors.New("plain")); got != nil {
		t.Errorf("Expected nil for non-validation error, got %v", got)
	}
}
