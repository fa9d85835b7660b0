// Package normalisers turns book files into normalised documents and splits
// them into chapters.
//
// Format-specific Normaliser implementations live in sub-packages and are
// registered with a Registry at startup. The Loader reads a file, picks a
// MIME type from its extension and dispatches to the registry. The
// ChapterDetector then splits the extracted text on heading lines.
package normalisers
