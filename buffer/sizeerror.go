// Package buffer implements the master code buffer and the smaller
// fixed-capacity buffers used for side-tables and metadata, all with the
// same grow/extend/resize-bytes shape so the rest of the module can treat
// them interchangeably.
package buffer

type sizeError string

func (s sizeError) Error() string           { return string(s) }
func (s sizeError) ModuleError() string     { return string(s) }
func (s sizeError) BufferSizeLimit() string { return string(s) }

// Errors implementing interface{ BufferSizeLimit() string }.
var (
	ErrSizeLimit  = sizeError("buffer size limit exceeded")
	ErrStaticSize = sizeError("static buffer capacity exceeded")
)
