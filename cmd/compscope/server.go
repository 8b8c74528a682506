package main

import (
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/peragwin/compscope/audio/sensors/scope"
)

type server struct {
	scope    *scope.Scope
	latest   func() *image.RGBA
	period   time.Duration
	upgrader websocket.Upgrader
}

// newServer routes the control and streaming API. latest supplies the frame
// served as /snapshot.png.
func newServer(s *scope.Scope, latest func() *image.RGBA, cfg ServerConfig) http.Handler {
	srv := &server{
		scope:  s,
		latest: latest,
		period: time.Duration(cfg.StreamMs) * time.Millisecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/graphql", srv.handleQuery)
	mux.HandleFunc("/api/v2/graphql", srv.handleApolloQuery)
	mux.HandleFunc("/api/v1/columns", srv.handleColumns)
	mux.HandleFunc("/snapshot.png", srv.handleSnapshot)
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return mux
}

func (srv *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	glog.V(1).Infoln("graphql:", query)
	res := srv.scope.Query(query, nil)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (srv *server) handleApolloQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var apolloQuery struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.Unmarshal(body, &apolloQuery); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	glog.V(1).Infoln("graphql:", apolloQuery.Query, apolloQuery.Variables)

	res := srv.scope.Query(apolloQuery.Query, apolloQuery.Variables)
	for _, err := range res.Errors {
		glog.Errorf("graphql: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (srv *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	img := srv.latest()
	if img == nil {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		glog.Warningf("snapshot: %v", err)
	}
}

// handleColumns streams the latest columns as binary messages until the
// client goes away.
func (srv *server) handleColumns(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("columns: upgrade: %v", err)
		return
	}
	defer conn.Close()
	glog.V(1).Infof("columns: streaming to %s", r.RemoteAddr)

	// the client only ever closes, but control frames need a reader
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(srv.period)
	defer ticker.Stop()
	cols := srv.scope.NewColumns()
	var buf []byte
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		if cols.Width() != srv.scope.Columns() {
			cols = srv.scope.NewColumns()
		}
		if srv.scope.ReadLatest(cols) == 0 {
			continue
		}
		buf = encodeColumns(buf[:0], cols)
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			glog.V(1).Infof("columns: %s: %v", r.RemoteAddr, err)
			return
		}
	}
}

// encodeColumns appends the wire form of cols to buf: the trace count and
// column count as little endian uint32, then for each trace its values
// followed by its extents as little endian float32. Missing values are NaN.
func encodeColumns(buf []byte, cols *scope.Columns) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(cols.Traces()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(cols.Len()))
	for t := 0; t < cols.Traces(); t++ {
		for _, x := range [2][]float64{cols.Value(t), cols.Extent(t)} {
			for _, v := range x {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
			}
		}
	}
	return buf
}
