// Package cli implements the uplink command-line application.
//
// Commands
//
//	sync                                uploads every pending measurement and
//	                                    waits for a terminal outcome per
//	                                    measurement (the default command)
//	import <descriptor.json> <payload>  stores a measurement locally so the
//	                                    next sync run picks it up
//
// The sync command prompts for the collector password on the terminal; the
// password is never read from configuration.
package cli
