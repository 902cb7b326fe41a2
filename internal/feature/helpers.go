package feature

import "strings"

// #region helpers

func joinTokens(toks []string) string {
	return strings.Join(toks, " ")
}

func lowerName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// #endregion helpers
