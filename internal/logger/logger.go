package logger

import (
	"go.uber.org/zap"
)

// New はGO_ENVに合わせてzapのloggerを作る。
// prodはJSON、それ以外は開発用のコンソール出力。
func New(prod bool) (*zap.Logger, error) {
	if prod {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
