package config

// MountOptions are the settings handed to the FUSE server when the tree is
// mounted. They stay free of go-fuse types so config files can carry them.
type MountOptions struct {
	Debug      bool   // Log every FUSE request and reply
	FsName     string // Shown as the source column of mount(8) (Default "memvfs")
	Name       string // Filesystem subtype i.e. fuse.memvfs (Default "memvfs")
	AllowOther bool   // Let users other than the mounting one access the tree
}
