// Daylog allocates dated log directories, writes buffered session logs and
// prunes day directories that have outlived their retention age.
//
// Usage:
//
//	# Allocate today's directory under a base path
//	daylog alloc --base /pix/anro/edi/dat_connexion/log/ --seq
//
//	# Write a message through a full session (allocate, log, prune, close)
//	daylog write --base /pix/anro/edi/dat_connexion/log/ "transfer complete"
//
//	# Prune the hierarchy a directory belongs to
//	daylog prune /pix/anro/edi/dat_connexion/log/2021/06/11/
//
//	# Prune every configured base on a schedule and expose /metrics
//	daylog serve --config /etc/daylog/daylog.yaml
//
//	# Show recent allocations and prune runs
//	daylog history --prunes --limit 20
package main

func main() {
	Execute()
}
