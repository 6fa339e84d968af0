// Package classlist загружает набор классов для сборки датасета.
package classlist

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidSelector - селектор не удалось разобрать или файл списка некорректен.
var ErrInvalidSelector = errors.New("classlist: invalid selector")

// List - метка -> имена класса. Первое имя используется в промпте.
type List struct {
	Classes map[string][]string
	// Limit - сколько изображений собирать по умолчанию.
	Limit  int
	Source string
}

// Load разбирает селектор:
//   - путь к .json ({"0": ["tench", "Tinca tinca"], ...}) или .txt (строка на класс, синонимы через ", ",
//     метка - номер строки);
//   - имя списка без расширения, если существует <dataDir>/<name>.json;
//   - <class>_<n>, например goldfish_12: n меток "0".."n-1" с одним и тем же классом.
func Load(selector, dataDir string) (*List, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}

	switch strings.ToLower(filepath.Ext(selector)) {
	case ".json":
		return loadJSON(selector)
	case ".txt":
		return loadText(selector)
	}

	named := filepath.Join(dataDir, selector+".json")
	if _, err := os.Stat(named); err == nil {
		return loadJSON(named)
	}

	return repeated(selector)
}

func repeated(selector string) (*List, error) {
	idx := strings.LastIndex(selector, "_")
	if idx <= 0 || idx == len(selector)-1 {
		return nil, fmt.Errorf("%w: %q is neither a class list nor <class>_<count>", ErrInvalidSelector, selector)
	}
	class, countStr := selector[:idx], selector[idx+1:]
	n, err := strconv.Atoi(countStr)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: invalid image count %q in %q", ErrInvalidSelector, countStr, selector)
	}

	classes := make(map[string][]string, n)
	for i := 0; i < n; i++ {
		classes[strconv.Itoa(i)] = []string{class}
	}
	return &List{Classes: classes, Limit: n, Source: selector}, nil
}

func loadJSON(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class list %s: %w", path, err)
	}
	var classes map[string][]string
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSelector, path, err)
	}
	if err := validate(classes, path); err != nil {
		return nil, err
	}
	return &List{Classes: classes, Limit: len(classes), Source: path}, nil
}

func loadText(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read class list %s: %w", path, err)
	}
	defer f.Close()

	classes := make(map[string][]string)
	scanner := bufio.NewScanner(f)
	// Метка - номер строки с нуля; пустые строки пропускаются, но номер занимают.
	for lineNo := 0; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names := strings.Split(line, ", ")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		classes[strconv.Itoa(lineNo)] = names
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read class list %s: %w", path, err)
	}
	if err := validate(classes, path); err != nil {
		return nil, err
	}
	return &List{Classes: classes, Limit: len(classes), Source: path}, nil
}

func validate(classes map[string][]string, path string) error {
	if len(classes) == 0 {
		return fmt.Errorf("%w: %s contains no classes", ErrInvalidSelector, path)
	}
	for label, names := range classes {
		if len(names) == 0 || strings.TrimSpace(names[0]) == "" {
			return fmt.Errorf("%w: %s: label %q has no class name", ErrInvalidSelector, path, label)
		}
	}
	return nil
}
