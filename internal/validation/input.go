package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength            = 3
	MaxUsernameLength            = 30
	MinProposalTitleLength       = 3
	MaxProposalTitleLength       = 200
	MinProposalDescriptionLength = 10
	MaxProposalDescriptionLength = 5000
	MaxPaymentTermsLength        = 1000
	MaxProposalDurationDays      = 3650
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	// Проверка длины
	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	// Проверка на допустимые символы (только буквы, цифры и подчеркивание)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	// Проверка, что не начинается с цифры
	if len(username) > 0 && unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateProposalTitle проверяет заголовок предложения.
func ValidateProposalTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("заголовок предложения обязателен")
	}
	return ValidateLength("заголовок предложения", strings.TrimSpace(title), MinProposalTitleLength, MaxProposalTitleLength)
}

// ValidateProposalDescription проверяет описание предложения.
func ValidateProposalDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("описание предложения обязательно")
	}
	return ValidateLength("описание предложения", strings.TrimSpace(description), MinProposalDescriptionLength, MaxProposalDescriptionLength)
}

// ValidatePaymentTerms проверяет условия оплаты.
func ValidatePaymentTerms(terms string) error {
	if err := ValidateNonEmpty("условия оплаты", terms); err != nil {
		return err
	}
	return ValidateLength("условия оплаты", strings.TrimSpace(terms), 0, MaxPaymentTermsLength)
}

// ValidateDuration проверяет срок выполнения в днях.
func ValidateDuration(days int) error {
	if days <= 0 {
		return fmt.Errorf("срок выполнения должен быть положительным")
	}
	if days > MaxProposalDurationDays {
		return fmt.Errorf("срок выполнения не может превышать %d дней", MaxProposalDurationDays)
	}
	return nil
}
