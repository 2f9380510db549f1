package mcpserver

// IndexFormatContract documents the on-disk catalog index layout for LLM
// consumers that want to interpret index paths and tool results.
const IndexFormatContract = `# gridcat Index Format

Every catalog node owns exactly one index file named "<node>.gcx" inside the
directory the node covers. Index files are written atomically and never
partially.

## Envelope

| Offset | Size | Field                                    |
|-------:|-----:|------------------------------------------|
| 0      | 12   | magic: "GRIDCATLEAF\0" or "GRIDCATPART\0" |
| 12     | 4    | schema version, big-endian int32         |
| 16     | 8    | metadata length N, big-endian int64      |
| 24     | N    | metadata block                           |

N must not exceed 100000000 bytes.

## Metadata block (version 1)

Protobuf wire encoding:

- field 1, string: top directory of the node
- field 2, repeated message: member file
  - field 1, string: absolute path
  - field 2, varint: last modified, milliseconds since the epoch
  - field 3, varint: size in bytes
- field 3, repeated string: child index paths (partitions only)

A leaf index lists the data files of its collection. A partition index lists
its child index files, each with the modification time it had when the
partition was built; a child index newer than that makes the partition stale.

## Update policies

- always: rebuild unconditionally
- test: rebuild when the recorded members differ from the filesystem
- nocheck: keep an existing index, build a missing one
- never: keep an existing index, fail when it is missing
`
