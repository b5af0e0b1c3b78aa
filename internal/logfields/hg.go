package logfields

import "go.uber.org/zap"

func Branch(val string) zap.Field {
	return zap.String("hg.branch", val)
}

func FeatureBranch(val string) zap.Field {
	return zap.String("hg.feature_branch", val)
}

func TargetBranch(val string) zap.Field {
	return zap.String("hg.target_branch", val)
}

func SourceBranch(val string) zap.Field {
	return zap.String("hg.source_branch", val)
}

func Command(val string) zap.Field {
	return zap.String("hg.command", val)
}

func WorkingDir(val string) zap.Field {
	return zap.String("hg.working_dir", val)
}
