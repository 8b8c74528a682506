//go:build scopedebug

package util

const checkInvariants = true
