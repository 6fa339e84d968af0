package dataset

import "strings"

const (
	promptPrefix = "photo of "
	// Перечисление сцен, чтобы фон у класса не был одинаковым.
	promptSceneSuffix = " in nature or in city or in interior or in the zoo or in the sky or in the wild or on the table"
)

// BuildPrompt формирует запрос для класса. short отключает суффикс со сценами.
func BuildPrompt(class string, short bool) string {
	prompt := promptPrefix + strings.TrimSpace(class)
	if !short {
		prompt += promptSceneSuffix
	}
	return prompt
}
