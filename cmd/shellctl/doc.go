// Command shellctl drives a codeshell server from the terminal.
//
//	shellctl exec editor 'cd src && ls'
//	shellctl start build
//	shellctl sessions
//	shellctl kill build
package main
