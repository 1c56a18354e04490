package server

import (
	"bytes"
	"html/template"
	"net/http"

	"example/merch-display/internal/display"
	"example/merch-display/internal/logger"
)

// displayTemplate draws the first frame server side; the script then follows
// /ws/display and redraws on every snapshot.
var displayTemplate = template.Must(template.New("display").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Display</title>
<style>
body{margin:0;height:100vh;display:flex;align-items:center;justify-content:center;
  font-family:{{with .Params.FontFamily}}{{.}},{{end}}sans-serif;
  background:linear-gradient(135deg,{{.Params.PrimaryColor}},{{.Params.SecondaryColor}});color:#fff}
.card{border-radius:{{.Params.BorderRadius}}px;padding:{{.Params.Spacing}}px;background:rgba(0,0,0,.35);max-width:80vw;
  {{if .Params.Shadow}}box-shadow:0 10px 30px rgba(0,0,0,.4);{{end}}{{if .Params.Border}}border:2px solid #fff;{{end}}}
.card.portrait{display:flex;flex-direction:column;align-items:center}
.card.landscape{display:flex;gap:{{.Params.Gap}}px;align-items:center}
.card img{max-height:60vh;max-width:45vw;border-radius:{{.Params.BorderRadius}}px}
.old{text-decoration:line-through;opacity:.7}
.badge{background:#e11d48;padding:2px 8px;border-radius:999px}
#status{position:fixed;top:12px;right:12px;padding:4px 10px;border-radius:999px;background:rgba(0,0,0,.5)}
#status.connected{background:#16a34a}#status.error{background:#dc2626}
#counter{position:fixed;bottom:12px;right:12px}
#dots{position:fixed;bottom:12px;left:50%;transform:translateX(-50%)}
#dots span{display:inline-block;width:8px;height:8px;margin:0 3px;border-radius:50%;background:rgba(255,255,255,.4)}
#dots span.on{background:#fff}
</style>
</head>
<body>
{{with .Params.LogoURL}}<img id="logo" src="{{.}}" alt="" style="position:fixed;top:12px;left:12px;height:48px">{{end}}
<div id="status" class="{{.Connection.Status}}">{{.Connection.Label}}</div>
<div id="slide">
{{if .Slide.Product}}{{with .Slide.Product}}
<div class="card {{$.Slide.Orientation}}">
  {{with .ImageURL}}<img src="{{.}}" alt="">{{end}}
  <div>
    <h1>{{.Name}}</h1>
    {{with .Description}}<p>{{.}}</p>{{end}}
    {{if .HasDiscount}}
    <p><span class="old">{{.Currency}} {{.Price}}</span> <strong>{{.Currency}} {{.DiscountedPrice}}</strong> <span class="badge">-{{.DiscountPercent}}%</span></p>
    {{else}}
    <p><strong>{{.Currency}} {{.Price}}</strong></p>
    {{end}}
  </div>
</div>
{{end}}{{else}}
<p>Waiting for product recommendations...</p>
{{end}}
</div>
<div id="counter">{{.Slide.Counter}}</div>
<div id="dots">{{range .Slide.Indicators}}<span{{if .}} class="on"{{end}}></span>{{end}}</div>
<script>
(function(){
  var esc=function(s){var d=document.createElement('div');d.textContent=s==null?'':String(s);return d.innerHTML;};
  function draw(snap){
    var st=document.getElementById('status');
    st.className=snap.connection.status;st.textContent=snap.connection.label;
    var sl=snap.slide,p=sl.product,el=document.getElementById('slide');
    document.getElementById('counter').textContent=sl.counter||'';
    document.getElementById('dots').innerHTML=(sl.indicators||[]).map(function(on){return on?'<span class="on"></span>':'<span></span>';}).join('');
    if(!p){el.innerHTML='<p>Waiting for product recommendations...</p>';return;}
    var price=p.hasDiscount
      ?'<span class="old">'+esc(p.currency)+' '+esc(p.price)+'</span> <strong>'+esc(p.currency)+' '+esc(p.discountedPrice)+'</strong> <span class="badge">-'+esc(p.discountPercent)+'%</span>'
      :'<strong>'+esc(p.currency)+' '+esc(p.price)+'</strong>';
    el.innerHTML='<div class="card '+esc(sl.orientation)+'">'+(p.imageUrl?'<img src="'+esc(p.imageUrl)+'" alt="">':'')+
      '<div><h1>'+esc(p.name)+'</h1>'+(p.description?'<p>'+esc(p.description)+'</p>':'')+'<p>'+price+'</p></div></div>';
  }
  function connect(){
    var ws=new WebSocket((location.protocol==='https:'?'wss://':'ws://')+location.host+'/ws/display');
    ws.onmessage=function(e){var m=JSON.parse(e.data);if(m&&m.success&&m.data&&m.data.slide){draw(m.data);}};
    ws.onclose=function(){setTimeout(connect,{{.ReconnectMs}});};
  }
  connect();
})();
</script>
</body>
</html>
`))

type displayPageData struct {
	display.Snapshot
	ReconnectMs int64
}

func (a *App) displayPage(w http.ResponseWriter, r *http.Request) {
	data := displayPageData{
		Snapshot:    a.Display.Snapshot(),
		ReconnectMs: a.Cfg.ReconnectDelay.Milliseconds(),
	}
	if data.ReconnectMs <= 0 {
		data.ReconnectMs = 5000
	}
	var buf bytes.Buffer
	if err := displayTemplate.Execute(&buf, data); err != nil {
		logger.Log.Errorw("Failed to render display page", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
