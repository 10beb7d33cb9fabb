package cmd

// Version is the application version. It is intended to be set at build time
// using ldflags, for example:
// go build -ldflags "-X github.com/xkilldash9x/taintscope/cmd.Version=1.0.0"
var Version = "0.1.0"
