// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DirChecker reports unhealthy when any of its directories is missing, not
// a directory, or not writable.
type DirChecker struct {
	name string
	dirs []string
}

// NewDirChecker creates a checker over the given directories.
func NewDirChecker(name string, dirs ...string) *DirChecker {
	return &DirChecker{name: name, dirs: dirs}
}

func (c *DirChecker) Name() string {
	return c.name
}

func (c *DirChecker) Check(_ context.Context) CheckResult {
	var problems []string
	for _, dir := range c.dirs {
		if err := checkWritableDir(dir); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  strings.Join(problems, "; "),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d directories writable", len(c.dirs)),
	}
}

func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	// Dot-prefixed so file watchers on dir ignore the probe.
	f, err := os.CreateTemp(dir, ".health-probe-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
