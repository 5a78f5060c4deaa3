package ports

import "gospc/domain/spc"

// TableReader loads a staging file into a typed table
type TableReader interface {
	ReadTable() (*spc.Table, error)
}
