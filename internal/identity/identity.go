package identity

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the identity file under the signoff home.
const FileName = "identity.yaml"

// Identity is the local user's default approver name for task commands.
type Identity struct {
	User   string `yaml:"user"`
	Email  string `yaml:"email,omitempty"`
	Source string `yaml:"source,omitempty"` // e.g. "git"
}

// DetectFromGit runs `git config user.name` and `git config user.email` (in repoDir, or global if repoDir is empty).
// Fields whose command fails are left empty.
func DetectFromGit(repoDir string) (Identity, error) {
	id := Identity{Source: "git"}
	if name, err := gitConfig(repoDir, "user.name"); err == nil {
		id.User = name
	}
	if email, err := gitConfig(repoDir, "user.email"); err == nil {
		id.Email = email
	}
	return id, nil
}

func gitConfig(repoDir, key string) (string, error) {
	cmd := exec.Command("git", "config", "--get", key)
	if repoDir != "" {
		cmd.Dir = repoDir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Path returns <home>/identity.yaml.
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// Load reads the identity file. A missing file yields (nil, nil).
func Load(home string) (*Identity, error) {
	data, err := os.ReadFile(Path(home))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Save writes the identity file, creating home if needed.
func Save(home string, id *Identity) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(home), data, 0o644)
}

// DetectAndSave runs DetectFromGit and saves the result. When git has no user.name,
// the local part of user.email is used.
func DetectAndSave(home, repoDir string) (*Identity, error) {
	id, err := DetectFromGit(repoDir)
	if err != nil {
		return nil, err
	}
	if id.User == "" {
		if idx := strings.Index(id.Email, "@"); idx > 0 {
			id.User = id.Email[:idx]
		}
	}
	if err := Save(home, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// DefaultUser returns the saved user for home, or "" if none is saved or the file is unreadable.
func DefaultUser(home string) string {
	id, err := Load(home)
	if err != nil || id == nil {
		return ""
	}
	return id.User
}
