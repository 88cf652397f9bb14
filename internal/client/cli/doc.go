// Package cli is the command-line front end of the upload client.
//
// Commands:
//
//	upload <ownerID> <file> [published]   chunked upload, prints the branch number
//	unlock <ownerID>                      release the edit lock of an owner
//	list <ownerID>                        list the owner's documents
//
// Without a configured token the user is asked for one on the terminal.
package cli
