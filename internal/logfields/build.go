package logfields

import "go.uber.org/zap"

func BuildID(val string) zap.Field {
	return zap.String("build.id", val)
}

func CaseID(val int) zap.Field {
	return zap.Int("tracker.case_id", val)
}
