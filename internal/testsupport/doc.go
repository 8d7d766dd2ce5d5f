// Package testsupport holds helpers shared by package tests: a config builder
// rooted in per-test temp directories, file writers, a journal opener, and an
// in-process fake of the screening backend.
package testsupport
