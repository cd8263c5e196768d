package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout はシャットダウン時に処理中のリクエストを待つ既定の時間。
const DefaultShutdownTimeout = 10 * time.Second

// Run はsrvを起動し、ctxがキャンセルされるまでリクエストを処理する。
// キャンセル後はshutdownTimeoutの範囲で処理中のリクエストを待って停止する。
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *log.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("%s での待ち受けに失敗: %w", srv.Addr, err)
	}
	return Serve(ctx, srv, ln, shutdownTimeout, logger)
}

// Serve は既存のリスナーでsrvを起動する。テストでは空きポートのリスナーを渡す。
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger *log.Logger) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("サーバーを起動します", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーが異常終了: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("サーバーを停止します", "timeout", shutdownTimeout)

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("シャットダウンに失敗: %w", err)
		}
		return nil
	})

	return g.Wait()
}
