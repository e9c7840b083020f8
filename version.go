package flowsetup

// Version is the flowsetup release version. It is stamped into every built
// package's index and reported by the command line tools.
const Version = "0.4.0"
