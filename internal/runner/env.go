package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvFile is the per-environment variables file under dir.
func EnvFile(dir, environment string) string {
	return filepath.Join(dir, environment+".env")
}

// loadEnvFile reads dir/<environment>.env. A missing file yields no
// variables and no error.
func loadEnvFile(dir, environment string) (map[string]string, error) {
	vars, err := godotenv.Read(EnvFile(dir, environment))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", EnvFile(dir, environment), err)
	}
	return vars, nil
}

// childEnv is the parent environment overlaid with the file variables and
// the run selectors, in that order of precedence.
func childEnv(base []string, fileVars map[string]string, opts Options) []string {
	env := append([]string(nil), base...)

	keys := make([]string, 0, len(fileVars))
	for k := range fileVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+fileVars[k])
	}

	return append(env,
		"ENVIRONMENT="+opts.Environment,
		"BROWSER_TYPE="+opts.Browser,
		"HEADLESS_MODE="+strconv.FormatBool(opts.Headless),
	)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
