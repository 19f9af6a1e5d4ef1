//go:build !windows && !unix

package debug

func processRSS() (uint64, bool) { return 0, false }
