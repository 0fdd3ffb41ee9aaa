package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"teamboard/internal/model"
)

type WriteOptions struct {
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteProject writes <toDir>/projects/<id>/index.md and one page per task under tasks/.
// taskUpdates maps task ids to their updates.
func WriteProject(page ProjectPage, taskUpdates map[string][]model.Update, toDir string, opt WriteOptions) (WriteResult, error) {
	id := strings.TrimSpace(page.Project.ID)
	if id == "" {
		return WriteResult{}, errors.New("missing project id")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	projectDir := filepath.Join(filepath.Clean(toDir), "projects", id)
	tasksDir := filepath.Join(projectDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexPath := filepath.Join(projectDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderProjectMarkdown(page)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	written := []string{indexPath}

	for _, t := range page.Tasks {
		tp := TaskPage{Project: page.Project, Task: t, Updates: taskUpdates[t.ID], Members: page.Members}
		p := filepath.Join(tasksDir, t.ID+".md")
		if err := writeFile(p, []byte(RenderTaskMarkdown(tp)), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
