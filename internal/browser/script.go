// internal/browser/script.go
package browser

import "fmt"

// bindingName is the CDP binding the collector script calls to hand
// messages to the Go side. Kept obscure to avoid colliding with page code.
const bindingName = "__presageEmit"

// tabbablesExpr pulls the current tab ordering straight from the page.
const tabbablesExpr = "window.__presageTabbables ? window.__presageTabbables() : []"

// DefaultSelector matches the elements a page usually lets the keyboard
// and pointer interact with.
const DefaultSelector = "a[href], button, input, select, textarea, [tabindex]"

// collectorScript renders the in-page collector. It is injected on every
// new document, so navigations keep reporting without reattaching.
func collectorScript(selector string) string {
	return fmt.Sprintf(collectorTemplate, bindingName, fmt.Sprintf("%q", selector))
}

// The collector assigns each matched element an opaque handle, streams
// pointer, key, and focus activity, and reports element geometry through
// an IntersectionObserver and a ResizeObserver plus a per-frame refresh
// while scrolling. All messages leave through the bound emit function as
// JSON text.
const collectorTemplate = `(() => {
  if (window.__presageInstalled) { return; }
  window.__presageInstalled = true;

  const SELECTOR = %[2]s;
  const emit = (msg) => {
    try { window.%[1]s(JSON.stringify(msg)); } catch (e) {}
  };

  let nextID = 1;
  const handles = new WeakMap();
  const tracked = new Map();

  const handleFor = (el) => {
    let h = handles.get(el);
    if (!h) { h = 'el-' + nextID++; handles.set(el, h); }
    return h;
  };

  const nameFor = (el) => {
    const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim();
    return text ? text.slice(0, 60) : el.tagName.toLowerCase();
  };

  const rectOf = (el) => {
    const r = el.getBoundingClientRect();
    return { top: r.top, left: r.left, right: r.right, bottom: r.bottom };
  };

  const onscreen = (r) =>
    r.bottom > 0 && r.right > 0 && r.top < window.innerHeight && r.left < window.innerWidth;

  const io = new IntersectionObserver((entries) => {
    emit({
      type: 'viewport',
      t: Date.now(),
      entries: entries.map((entry) => ({
        handle: handleFor(entry.target),
        rect: {
          top: entry.boundingClientRect.top,
          left: entry.boundingClientRect.left,
          right: entry.boundingClientRect.right,
          bottom: entry.boundingClientRect.bottom,
        },
        intersecting: entry.isIntersecting,
      })),
    });
  });

  const ro = (typeof ResizeObserver !== 'undefined') ? new ResizeObserver((entries) => {
    const out = [];
    entries.forEach((entry) => {
      const h = handles.get(entry.target);
      if (!h || !tracked.has(h)) { return; }
      const r = rectOf(entry.target);
      out.push({ handle: h, rect: r, intersecting: onscreen(r) });
    });
    if (out.length) { emit({ type: 'viewport', t: Date.now(), entries: out }); }
  }) : null;

  const tabbables = () => {
    const out = [];
    document.querySelectorAll(SELECTOR).forEach((el) => {
      const h = handles.get(el);
      if (h && tracked.has(h) && el.tabIndex >= 0) { out.push(h); }
    });
    return out;
  };
  window.__presageTabbables = tabbables;

  const track = (el) => {
    const h = handleFor(el);
    if (tracked.has(h)) { return; }
    tracked.set(h, el);
    emit({ type: 'elementAdded', t: Date.now(), handle: h, name: nameFor(el) });
    io.observe(el);
    if (ro) { ro.observe(el); }
  };

  const untrack = (el) => {
    const h = handles.get(el);
    if (!h || !tracked.has(h)) { return; }
    tracked.delete(h);
    io.unobserve(el);
    if (ro) { ro.unobserve(el); }
    emit({ type: 'disconnect', t: Date.now(), handle: h });
  };

  const scan = (root) => {
    if (root.matches && root.matches(SELECTOR)) { track(root); }
    if (root.querySelectorAll) { root.querySelectorAll(SELECTOR).forEach(track); }
  };

  const mo = new MutationObserver((mutations) => {
    let changed = false;
    for (const m of mutations) {
      m.addedNodes.forEach((node) => {
        if (node.nodeType === 1) { scan(node); changed = true; }
      });
      m.removedNodes.forEach((node) => {
        if (node.nodeType !== 1) { return; }
        untrack(node);
        if (node.querySelectorAll) { node.querySelectorAll(SELECTOR).forEach(untrack); }
        changed = true;
      });
    }
    if (changed) {
      emit({ type: 'mutation', t: Date.now() });
      emit({ type: 'tabbables', t: Date.now(), handles: tabbables() });
    }
  });

  document.addEventListener('pointermove', (ev) => {
    emit({ type: 'pointerMove', t: Date.now(), point: { x: ev.clientX, y: ev.clientY } });
  }, { passive: true, capture: true });

  document.addEventListener('keydown', (ev) => {
    emit({ type: 'keyDown', t: Date.now(), key: ev.key, shift: ev.shiftKey });
  }, { passive: true, capture: true });

  document.addEventListener('focusin', (ev) => {
    const h = ev.target ? handles.get(ev.target) : null;
    if (h) { emit({ type: 'focusIn', t: Date.now(), handle: h }); }
  }, { passive: true, capture: true });

  let scrollPending = false;
  document.addEventListener('scroll', () => {
    if (scrollPending) { return; }
    scrollPending = true;
    requestAnimationFrame(() => {
      scrollPending = false;
      const entries = [];
      tracked.forEach((el, h) => {
        const r = rectOf(el);
        entries.push({ handle: h, rect: r, intersecting: onscreen(r) });
      });
      if (entries.length) { emit({ type: 'viewport', t: Date.now(), entries: entries }); }
    });
  }, { passive: true, capture: true });

  const start = () => {
    emit({
      type: 'device',
      t: Date.now(),
      coarse: window.matchMedia ? window.matchMedia('(pointer: coarse)').matches : false,
      saveData: !!(navigator.connection && navigator.connection.saveData),
    });
    scan(document.documentElement);
    mo.observe(document.documentElement, { childList: true, subtree: true });
    emit({ type: 'tabbables', t: Date.now(), handles: tabbables() });
  };

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', start, { once: true });
  } else {
    start();
  }
})();`
