package api

import (
	"net/http"
	"time"

	"cdi-map/internal/logger"
	"cdi-map/internal/mapsurface"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 5 * time.Second
	wsPingInterval = 20 * time.Second
)

var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 8192}

// 文档注释：状态推送（/ws）
// 背景：区域激活在后台进行，图层陆续加入；连接建立时先推送一帧当前状态，之后地图表面或导航状态每次变更都推送最新一帧。
// 帧内不含几何与样式，浏览器收到后按需请求 /view。
// 约束：只有本 goroutine 写连接；读循环仅用于感知对端关闭；每 20 秒发送一次 ping。
func (d Deps) serveWS(nav *mapsurface.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.L().Debug("ws_upgrade_error", "err", err)
			return
		}
		defer conn.Close()
		surfaceCh, cancelSurface := d.Surface.Subscribe()
		defer cancelSurface()
		navCh, cancelNav := nav.Subscribe()
		defer cancelNav()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func() error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(viewResult{
				navResult:    currentNav(d.Router),
				ActiveRegion: d.Manager.ActiveRegion(),
				Generation:   d.Manager.Generation(),
				Map:          d.Surface.Snapshot(false),
			})
		}
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		logger.L().Debug("ws_open", "ip", logger.ClientIP(r))
		for err = send(); err == nil; {
			select {
			case <-closed:
				logger.L().Debug("ws_closed")
				return
			case <-r.Context().Done():
				return
			case <-surfaceCh:
				err = send()
			case <-navCh:
				err = send()
			case <-ticker.C:
				err = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait))
			}
		}
		logger.L().Debug("ws_write_error", "err", err)
	}
}
