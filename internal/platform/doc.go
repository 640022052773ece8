// Package platform provides the few filesystem operations whose behavior
// differs across operating systems. Permission bits are applied with chmod
// on Unix systems and ignored on Windows.
package platform
