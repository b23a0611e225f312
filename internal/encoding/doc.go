// Package encoding turns a set of samples plus common tags into the request
// body understood by the collection endpoint.
//
// The wire object has two fields:
//
//	{"tags": {"<key>": "<value>", ...}, "metrics": [{"tags": {...}, "start": <ms>, "value": <float>}, ...]}
//
// [MsgpackEncoder] is the default binary form; [JSONEncoder] produces the same
// object as text and is mostly useful when debugging against a stub.
package encoding
