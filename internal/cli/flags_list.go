package cli

// flagsList holds the default values for schemarunner's top-level flags,
// read by cmd/schemarunner's pflag registration. The usage text in Main
// states these defaults by hand and does not read this struct.
type flagsList struct {
	Help        bool
	Version     bool
	Verbose     bool
	LockTimeout uint
	Path        string
	Source      string
}

// DefaultFlags are the flag defaults cmd/schemarunner registers with pflag.
var DefaultFlags = flagsList{
	Help:        false,
	Version:     false,
	Verbose:     false,
	LockTimeout: 15,
	Path:        "",
	Source:      "",
}
