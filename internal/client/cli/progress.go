package cli

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/dmitrijs2005/otaverifier/internal/client/services"
)

const barTemplate = `{{string . "prefix"}} {{bar . "[" "=" ">" " " "]"}} {{percent . }}`

var phaseTitles = map[services.Phase]string{
	services.PhaseVerify: "Verifying",
	services.PhaseUpload: "Uploading",
}

// progressBars renders one terminal bar per running phase.
type progressBars struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[services.Phase]*pb.ProgressBar
}

func newProgressBars(out io.Writer) *progressBars {
	return &progressBars{out: out, bars: map[services.Phase]*pb.ProgressBar{}}
}

// Update is a services.ProgressFunc. A bar is started on the first report of
// a phase and finished at 100%.
func (p *progressBars) Update(phase services.Phase, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[phase]
	if !ok {
		bar = pb.ProgressBarTemplate(barTemplate).New(100)
		bar.Set("prefix", phaseTitles[phase])
		bar.SetWriter(p.out)
		bar.Start()
		p.bars[phase] = bar
	}

	bar.SetCurrent(int64(percent))
	if percent >= 100 {
		bar.Finish()
		delete(p.bars, phase)
	}
}

// Drop abandons the bar of phase, if any, without completing it.
func (p *progressBars) Drop(phase services.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bar, ok := p.bars[phase]; ok {
		bar.Finish()
		delete(p.bars, phase)
	}
}

func (p *progressBars) active(phase services.Phase) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.bars[phase]
	return ok
}
