package cache

func jobStatusKey(jobID string) string {
	return "callpipe:job:" + jobID + ":status"
}

func callStageKey(callID string) string {
	return "callpipe:call:" + callID + ":stage"
}
