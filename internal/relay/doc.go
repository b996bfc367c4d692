// Package relay implements the stream-side half of the broadcast relay: a
// [Broadcast] accepts bytes from a single producer, parses and rewrites
// them with internal/ebml, and fans the result out to any number of
// subscribers through a synchronous callback. [Set]
// multiplexes many Broadcasts by stream key for a daemon that hosts more
// than one live stream at a time.
//
// Neither type logs anything; both report failures as errors (Send) or
// through caller-supplied callbacks (Set's OnStreamClose,
// OnStreamTrackInfo), leaving logging to the collaborator that owns the
// process (cmd/webmrelayd).
package relay
