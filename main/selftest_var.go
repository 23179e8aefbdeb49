package main

import "glenda/internal/vm"

// runSelfTestHook is a no-op in production builds; the selftest build
// tag's init() (selftest.go) replaces it with runSelfTest. Declared in
// an untagged file so it always exists regardless of which build tag
// is active — selftest.go's init() assigns to it, it does not declare
// it.
var runSelfTestHook = func(root *vm.Table) {}
