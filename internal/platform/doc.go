// Package platform provides the filesystem steps of a download that behave
// differently across operating systems: creating destination directories
// while other workers create the same ones, and replacing a file with its
// staged copy. Rename does not overwrite an existing file on Windows, so the
// destination is removed first on every platform.
package platform
