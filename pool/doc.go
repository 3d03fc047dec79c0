// File: pool/doc.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// Object and byte-slice reuse for the reactor/worker split: SyncPool
// recycles the bufio.Reader/ResponseWriter pair each connection needs,
// BytePool recycles the fixed-size backing arrays behind
// SharedInputBuffer and SharedOutputBuffer. Both are sized for churn
// across short keep-alive-less connections, not for batched or
// NUMA-aware transfer.
package pool
