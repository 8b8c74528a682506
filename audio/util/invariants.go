//go:build !scopedebug

package util

// checkInvariants enables structural checks after every MedianFilter
// operation. Build with -tags scopedebug to turn them on.
const checkInvariants = false
