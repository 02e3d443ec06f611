// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import "github.com/ManuGH/netguard/internal/health"

// Checker reports whether both guard directories exist and are writable.
func (s *Store) Checker() health.Checker {
	return health.NewDirChecker("guard_directories", s.fromMaster, s.fromReplica)
}
