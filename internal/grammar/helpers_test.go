package grammar

import "github.com/zjrosen/lumen/internal/scope"

func mustScope(s string) scope.Scope { return scope.MustNew(s) }
