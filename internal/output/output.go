package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// Manager handles report file generation
type Manager struct {
	baseDir string
}

// NewManager creates a new output manager
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	baseDir := filepath.Join(home, ".driftwatch", "output")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{baseDir: baseDir}, nil
}

// SaveDetectionResult saves one site's detection result to a JSON file
func (m *Manager) SaveDetectionResult(siteID string, result interface{}, hasChanges bool) (string, error) {
	siteDir := filepath.Join(m.baseDir, sanitize(siteID))
	if err := os.MkdirAll(siteDir, 0755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	suffix := ""
	if hasChanges {
		suffix = "_CHANGES"
	}
	filename := fmt.Sprintf("%s_detection%s.json", timestamp, suffix)
	path := filepath.Join(siteDir, filename)

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", err
	}

	return path, nil
}

// SaveCrawlSummary saves a crawl pass summary to a JSON file
func (m *Manager) SaveCrawlSummary(phase string, summary interface{}) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_crawl_%s.json", timestamp, phase)
	path := filepath.Join(m.baseDir, filename)

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", err
	}

	return path, nil
}

// GenerateChangeReport generates a markdown report of ledger entries
func (m *Manager) GenerateChangeReport(siteID string, changes []models.Change) (string, error) {
	siteDir := filepath.Join(m.baseDir, sanitize(siteID))
	if err := os.MkdirAll(siteDir, 0755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_CHANGE_REPORT.md", timestamp)
	path := filepath.Join(siteDir, filename)

	content := fmt.Sprintf("# Change Report: %s\n\n", siteID)
	content += fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	content += fmt.Sprintf("## Summary\n\nTotal Changes: %d\n\n", len(changes))

	// Group by change type
	byType := make(map[models.ChangeType][]models.Change)
	for _, change := range changes {
		byType[change.ChangeType] = append(byType[change.ChangeType], change)
	}

	for changeType, items := range byType {
		content += fmt.Sprintf("### %s (%d)\n\n", changeType, len(items))
		for _, item := range items {
			email := ""
			if item.PrincipalEmail != nil {
				email = " <" + *item.PrincipalEmail + ">"
			}
			content += fmt.Sprintf("- **%s** - %s%s\n", item.ResourceName, item.PrincipalName, email)
			if item.OldPermission != nil {
				content += fmt.Sprintf("  - Old: `%s`\n", *item.OldPermission)
			}
			if item.NewPermission != nil {
				content += fmt.Sprintf("  - New: `%s`\n", *item.NewPermission)
			}
			content += "\n"
		}
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}

	return path, nil
}

// sanitize makes an id safe for use as a directory name
func sanitize(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out[i] = '_'
		}
	}
	return string(out)
}
