// Package cin holds radical/stroke code tables ("cin tables") and the
// service that loads them.
//
// A Table maps short input codes to candidate strings. Tables are read from
// JSON documents converted from .cin files:
//
//	{
//	  "cname":    "三角編號",
//	  "selkey":   "1234567890",
//	  "keyname":  {"1": "一", ...},
//	  "chardefs": {"120": ["中"], ...}
//	}
//
// Documents are validated against an embedded JSON schema before use.
//
// A Registry owns one handle per table Kind. Handles are filled by
// background loads; callers either take the current table without waiting
// (Table) or block until a load for the wanted scheme finishes (Await).
package cin
