// Package fetcher walks a densely numbered remote collection and saves each
// item until the end of the collection is detected.
//
// # Loop
//
// For each index from Start to End, in order, the fetcher sends exactly one
// GET to BaseURL + index + Extension and classifies the response with
// [Classify]:
//
//   - 200, non-empty body, accepted content-type: [Success], the body is
//     streamed to storage and the loop continues
//   - 200, non-empty body, other content-type: [WrongType], the loop halts
//   - any other status or an empty body: [NotFound], the loop halts
//
// A transport failure halts the loop as [TransportError]. Nothing is retried.
//
// # Halt reasons
//
// [HaltReason] turns the final outcome into a [Reason]. A NotFound before any
// progress is a [HaltConfiguration]; after progress it is
// [HaltEndOfCollection]. Run returns a [*HaltError] for every reason except
// [HaltRangeExhausted] and [HaltEndOfCollection].
package fetcher
