package classlist_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-generator/internal/classlist"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_RepeatedClass(t *testing.T) {
	list, err := classlist.Load("goldfish_3", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, list.Limit)
	assert.Equal(t, map[string][]string{
		"0": {"goldfish"},
		"1": {"goldfish"},
		"2": {"goldfish"},
	}, list.Classes)

	list, err = classlist.Load("golden_retriever_2", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"golden_retriever"}, list.Classes["1"])
}

func TestLoad_NamedListWinsOverRepeated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "imagenet_2.json", `{"n01440764": ["tench", "Tinca tinca"], "n01443537": ["goldfish"]}`)

	list, err := classlist.Load("imagenet_2", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, []string{"tench", "Tinca tinca"}, list.Classes["n01440764"])
	assert.Equal(t, filepath.Join(dir, "imagenet_2.json"), list.Source)
}

func TestLoad_TextFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "classes.txt", "tench, Tinca tinca\ngoldfish, Carassius auratus\nwhite shark\n")

	list, err := classlist.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 3, list.Limit)
	assert.Equal(t, []string{"tench", "Tinca tinca"}, list.Classes["0"])
	assert.Equal(t, []string{"goldfish", "Carassius auratus"}, list.Classes["1"])
	assert.Equal(t, []string{"white shark"}, list.Classes["2"])
}

func TestLoad_TextFileBlankLinesKeepLineLabels(t *testing.T) {
	path := writeFile(t, t.TempDir(), "classes.txt", "tench, Tinca tinca\n\ngoldfish\n   \nwhite shark\n")

	list, err := classlist.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 3, list.Limit)
	assert.Equal(t, map[string][]string{
		"0": {"tench", "Tinca tinca"},
		"2": {"goldfish"},
		"4": {"white shark"},
	}, list.Classes)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	badJSON := writeFile(t, dir, "bad.json", `["tench"]`)
	emptyJSON := writeFile(t, dir, "empty.json", `{}`)
	noName := writeFile(t, dir, "noname.json", `{"0": []}`)

	for _, selector := range []string{"", "goldfish", "goldfish_", "_3", "goldfish_0", "goldfish_x", badJSON, emptyJSON, noName} {
		_, err := classlist.Load(selector, dir)
		assert.ErrorIs(t, err, classlist.ErrInvalidSelector, selector)
	}

	_, err := classlist.Load(filepath.Join(dir, "missing.json"), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
