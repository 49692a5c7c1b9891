package chat

var (
	CompressHistoryForTest   = compressHistory
	IsTokenLimitErrorForTest = isTokenLimitError
	SummarizeContentsForTest = summarizeContents
	PairFunctionCallsForTest = pairFunctionCalls
)
