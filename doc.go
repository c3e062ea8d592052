// Package laters provides deferred values (Futures) with scheduled,
// run-to-completion reactions.
//
// The core code is in package 'core', the host-side queue is in
// 'run', the combinators are in 'gather', and some command-line tools
// are in `cmd`.
//
// See https://github.com/Comcast/laters/blob/master/README.md for more.
package laters
