// Package flowsetup builds and runs self-contained setup packages.
//
// A setup package bundles an application's files together with its install
// instructions (target directories, optional tasks, shortcuts and
// post-install commands) into a single artifact. The artifact can be
// inspected and installed with the flowsetup command, or prepended with a
// stub executable so that it installs itself when run, either through a
// console wizard or unattended (referred to as a "silent" install).
//
// See the README.md for usage info and the manifest format reference.
package flowsetup
