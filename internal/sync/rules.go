package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nhle/mailsync/internal/fsutil"
	"github.com/nhle/mailsync/internal/model"
)

// LoadRules reads the rules document at path. When the file does not exist
// the default rules are written there and returned.
func LoadRules(path string) (model.RuleSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		rs := model.DefaultRuleSet()
		if err := SaveRules(path, rs); err != nil {
			return rs, err
		}
		return rs, nil
	}
	if err != nil {
		return model.RuleSet{}, fmt.Errorf("reading rules %s: %w", path, err)
	}

	var rs model.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return model.RuleSet{}, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	if rs.Rules == nil {
		rs.Rules = []model.CategoryRule{}
	}
	return rs, nil
}

// SaveRules writes rs to path atomically.
func SaveRules(path string, rs model.RuleSet) error {
	if rs.Rules == nil {
		rs.Rules = []model.CategoryRule{}
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	if _, err := fsutil.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data, 0o644); err != nil {
		return fmt.Errorf("writing rules %s: %w", path, err)
	}
	return nil
}
