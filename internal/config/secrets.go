package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	apiKeySecret    = "kandinsky_api_key"
	secretKeySecret = "kandinsky_secret_key"
)

// readSecret читает секрет из файла <dir>/<name> (Docker Secrets).
// Отсутствующий файл не ошибка: возвращается пустая строка.
func readSecret(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

// fillSecrets подставляет ключи из файлов секретов, если они не заданы в окружении.
func (c *Config) fillSecrets() error {
	if c.SecretsDir == "" {
		return nil
	}
	for _, s := range []struct {
		name string
		dst  *string
	}{
		{apiKeySecret, &c.Kandinsky.APIKey},
		{secretKeySecret, &c.Kandinsky.SecretKey},
	} {
		if *s.dst != "" {
			continue
		}
		v, err := readSecret(c.SecretsDir, s.name)
		if err != nil {
			return err
		}
		*s.dst = v
	}
	return nil
}
