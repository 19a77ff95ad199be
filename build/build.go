package build

var (
	Version = "dev"
	Date    = ""
)
